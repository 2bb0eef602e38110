package main

import "careworks_backend/internal/app"

func main() {
	app.Run()
}
