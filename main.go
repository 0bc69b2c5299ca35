package main

import "github.com/dataporter/mysql-porter/cmd"

func main() {
	cmd.Execute()
}
