package main

import (
	"os"

	"yao/internal/yao"
)

func main() {
	os.Exit(yao.Main())
}
