package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/mizuna-io/mizuna/cmd/mzn-remote/app"
)

func main() {
	app.NewApp().Run()
}
