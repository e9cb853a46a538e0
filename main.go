package main

import "github.com/railwayapp/ciboot/cmd/ciboot"

func main() {
	ciboot.Execute()
}
