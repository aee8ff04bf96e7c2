package main

import "github.com/kozaktomas/photo-map/cmd"

func main() {
	cmd.Execute()
}
