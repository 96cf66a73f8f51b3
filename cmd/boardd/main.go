// Command boardd polls live departure boards and serves them.
package main

import (
	_ "time/tzdata" // board timestamps are London time wherever this runs
)

func main() {
	Execute()
}
