package main

import "github.com/kebairia/dbmaint/cmd"

func main() {
	cmd.Execute()
}
