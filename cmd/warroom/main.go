package main

import "github.com/ianbrucey/war-room-sub000/cmd"

func main() {
	cmd.Execute()
}
