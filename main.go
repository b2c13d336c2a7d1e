package main

import "github.com/opsre/zencloud/cmd"

func main() {
	cmd.Execute()
}
