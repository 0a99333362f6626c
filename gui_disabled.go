//go:build !gui

package main

import (
	"context"
	"errors"
)

const guiAvailable = false

func runGUI(context.Context, context.CancelFunc, *dictation) error {
	return errors.New("built without GUI support (rebuild with -tags gui)")
}
