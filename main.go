package main

import "abengine/internal/app"

func main() {
	app.Main()
}
