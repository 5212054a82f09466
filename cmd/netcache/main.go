package main

import "github.com/vietddude/netcache/internal/cli"

func main() {
	cli.Execute()
}
