package main

import "imrs-backend/cmd/imrs/cmd"

func main() {
	cmd.Execute()
}
