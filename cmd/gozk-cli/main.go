package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chadi146/zklib-fitness"
)

func main() {
	cfg := gozk.DefaultConfig()
	cfg.Host = "192.168.1.20"

	client := gozk.NewClientFromConfig(cfg.Host, cfg)
	if err := client.CreateSocket(nil, nil); err != nil {
		panic(err)
	}

	if err := client.GetRealTimeLogs(myLogFunc); err != nil {
		panic(err)
	}

	err := client.SetUser(1324, "1324", "Siwapong", "", 0, "9876543")
	if err != nil {
		fmt.Println(err)
	}

	gracefulQuit(func() { client.Disconnect() })
}

func gracefulQuit(f func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan

		log.Println("Stopping...")
		f()

		time.Sleep(time.Second)
		os.Exit(1)
	}()

	for {
		time.Sleep(10 * time.Second)
	}
}

func myLogFunc(event gozk.RealTimeEvent) {
	fmt.Println("attendance", event.UserID, event.AttendAt)
}
