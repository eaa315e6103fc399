package main

import "github.com/ValentinKolb/feval/cmd"

func main() {
	cmd.Execute()
}
