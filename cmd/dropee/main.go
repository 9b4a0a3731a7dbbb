package main

import "github.com/zainarain279/Dropee/cmd/dropee/root"

func main() {
	root.Execute()
}
