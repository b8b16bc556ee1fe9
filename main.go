package main

import "github.com/pineking/kaldi-git/cmd"

func main() {
	cmd.Execute()
}
