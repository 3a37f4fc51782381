package main

import "sprintboard_backend/internal/app"

func main() {
	app.Run()
}
