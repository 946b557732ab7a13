// Copyright © 2018 One Concern

package main

import "github.com/oneconcern/trawler/cmd/trawler/cmd"

func main() {
	cmd.Execute()
}
