package main

import (
	cmd "github.com/framelight/previz-server/cmd/previz"
)

func main() {
	cmd.Execute()
}
