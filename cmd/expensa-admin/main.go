// Command expensa-admin manages users, migrations and one-off jobs against
// the expensa database.
package main

func main() {
	Execute()
}
