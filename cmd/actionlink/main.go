// Command actionlink выпускает и проверяет ссылки approve/deny тем же секретом,
// что и сервис. Нужен поддержке, когда письмо потерялось или ссылку надо проверить.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := App().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
