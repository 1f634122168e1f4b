package main

import (
	"context"
	"time"

	"biketrack-go/platform"
	"biketrack-go/services/firmware"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot")

	board, err := platform.Open()
	if err != nil {
		println("[main] board:", err.Error())
		for {
			time.Sleep(time.Second)
		}
	}
	if err := firmware.Run(context.Background(), board, firmware.Options{LogLevel: "info"}); err != nil {
		println("[main] firmware:", err.Error())
	}
}
