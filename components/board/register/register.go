// Package register registers all relevant Boards.
package register

import (
	// for boards.
	_ "github.com/viam-labs/keydrive/components/board/fake"
	_ "github.com/viam-labs/keydrive/components/board/periph"
)
