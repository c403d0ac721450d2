package main

import (
	"bid-risk-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
