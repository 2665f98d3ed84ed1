// Command comment-sidecar はスレッド形式のコメントを保存・配信するAPIサーバー。
//
//	comment-sidecar [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/comment-sidecar/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "comment-sidecar: %v\n", err)
		os.Exit(1)
	}
}
