// Package viz renders a running convergence loop in the terminal.
//
// [Feed] is a controller observer that forwards iteration reports to a
// Bubble Tea program built from [NewModel]. The view shows the iteration
// budget, the inner temperature trace and the deviation history.
//
// # Key Bindings
//
//	S - Toggle the shell table
//	? - Show help
//	Q - Quit
package viz
