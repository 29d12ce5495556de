// Command donorlink は寄付プラットフォームAPIのセッションとキャッシュを保持し、
// ローカルのUIへHTTPとWebSocketで中継するブリッジを起動する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/donorlink/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
