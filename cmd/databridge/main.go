// Command databridge manages products, students, employees and members
// through the databridge REST backend.
package main

import "github.com/marshallshelly/databridge/cmd/databridge/commands"

func main() {
	commands.Execute()
}
