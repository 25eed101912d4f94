package main

import "github.com/ValentinKolb/dcov/cmd"

func main() {
	cmd.Execute()
}
