package main

import "github.com/nikhilbhutani/fincommerce/internal/cli"

func main() {
	cli.Execute()
}
