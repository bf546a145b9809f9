package main

import "flulance/internal/app"

func main() {
	app.Run()
}
