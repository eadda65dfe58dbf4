package main

import "github.com/heathcliff26/hookguard/pkg/server"

func main() {
	server.Execute()
}
