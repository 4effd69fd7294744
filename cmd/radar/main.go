package main

import (
	"os"

	"github.com/katharinadi0523-create/ai-news-radar/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
