// Command obligations generates and reconciles recurring client tasks.
package main

func main() {
	Execute()
}
