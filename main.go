package main

import "github.com/qrave1/TeleVisit/cmd"

func main() {
	cmd.Execute()
}
