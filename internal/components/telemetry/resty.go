package telemetry

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_dump     = "resty.dump"
)

// MessageOutput receives a fully rendered request/response exchange.
type MessageOutput interface {
	Write(id string, contents string) error
}

type instrumentResty struct {
	tel       API
	output    MessageOutput
	idcounter *uint64
}

// InstrumentResty reports every request made by client to tel, `output` can be nil,
// if it is not, every completed exchange is also written to it.
func InstrumentResty(client *resty.Client, tel API, output MessageOutput) {
	var idcounter uint64
	i := instrumentResty{tel: tel, output: output, idcounter: &idcounter}

	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type reqCtxKeyType int

var reqCtxKey reqCtxKeyType

type reqCtx struct {
	id uint64
	// startTime does not need to rely on chrono because it does not depend on the
	// absolute time, just the difference in time.
	startTime time.Time
}

func (i instrumentResty) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	start := time.Now()
	ctx := req.Context()

	id := atomic.AddUint64(i.idcounter, 1)
	ctx = context.WithValue(ctx, reqCtxKey, reqCtx{
		id:        id,
		startTime: start,
	})
	i.tel.ReportDebug(report_resty_request, id, req.Method, req.URL)

	req.SetContext(ctx)
	return nil
}

func (i instrumentResty) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	end := time.Now()
	ctx := res.Request.Context()

	rc, ok := ctx.Value(reqCtxKey).(reqCtx)
	if !ok {
		return nil
	}

	i.tel.ReportDebug(
		report_resty_response,
		rc.id,
		end.Sub(rc.startTime).String(),
		res.Status(),
	)

	if i.output != nil {
		err := i.output.Write(strconv.FormatUint(rc.id, 10), newExchange(res).String())
		if err != nil {
			i.tel.ReportWarning(report_resty_dump, err, rc.id)
		}
	}

	return nil
}

func (i instrumentResty) onError(req *resty.Request, err error) {
	end := time.Now()

	var duration time.Duration
	rc, ok := req.Context().Value(reqCtxKey).(reqCtx)
	if ok {
		duration = end.Sub(rc.startTime)
	}

	i.tel.ReportBroken(
		report_resty_response,
		err,
		req.Method,
		req.URL,
		duration,
	)
}

// FilesystemOutput writes each exchange to its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears and recreates dir.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) error {
	return os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
}

// exchange is a flattened request/response pair as written to a MessageOutput.
type exchange struct {
	Method     string
	Url        string
	ReqHeaders http.Header
	ReqBody    string
	Status     int
	FinalUrl   string
	ResHeaders http.Header
	ResBody    string
}

func newExchange(res *resty.Response) exchange {
	ex := exchange{
		Method:     res.Request.Method,
		Url:        res.Request.URL,
		FinalUrl:   res.Request.URL,
		Status:     res.StatusCode(),
		ResHeaders: res.Header(),
		ResBody:    res.String(),
	}
	if raw := res.Request.RawRequest; raw != nil {
		ex.Url = raw.URL.String()
		ex.FinalUrl = ex.Url
		ex.ReqHeaders = raw.Header
		ex.ReqBody = readRequestBody(raw)
	}
	if res.RawResponse != nil {
		if loc, err := res.RawResponse.Location(); err == nil {
			ex.FinalUrl = loc.String()
		}
	}
	return ex
}

// readRequestBody re-reads the body of a sent request, GET requests and other
// bodiless requests yield an empty string.
func readRequestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("<unreadable body: %s>", err)
	}
	if body == nil || body == http.NoBody {
		return ""
	}
	defer body.Close()
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("<unreadable body: %s>", err)
	}
	return string(contents)
}

func writeHeaders(out *strings.Builder, headers http.Header) {
	for _, key := range slices.Sorted(maps.Keys(headers)) {
		for _, v := range headers[key] {
			fmt.Fprintf(out, "%s: %s\n", key, v)
		}
	}
}

func (e exchange) String() string {
	var out strings.Builder

	out.WriteString("---- REQUEST ----\n\n")
	fmt.Fprintf(&out, "%s %s\n\n", e.Method, e.Url)
	writeHeaders(&out, e.ReqHeaders)
	if e.ReqBody != "" {
		out.WriteString("\n")
		out.WriteString(e.ReqBody)
		out.WriteString("\n")
	}

	out.WriteString("\n---- RESPONSE ----\n\n")
	fmt.Fprintf(&out, "%d %s\n\n", e.Status, e.FinalUrl)
	writeHeaders(&out, e.ResHeaders)
	out.WriteString("\n")
	out.WriteString(e.ResBody)

	return out.String()
}
