// SPDX-License-Identifier: MPL-2.0

package install

import (
	"fmt"
	"os"
	"path/filepath"
)

// ClientJar is the file name of the client inside the installation root.
const ClientJar = "client.jar"

// Layout is the directory tree of an installation.
type Layout struct {
	Root      string
	Libraries string
	Natives   string
	// Runtime is the game's working directory.
	Runtime string
	Assets  string
	Objects string
	Indexes string
}

// NewLayout returns the layout rooted at root.
func NewLayout(root string) Layout {
	assets := filepath.Join(root, "assets")
	return Layout{
		Root:      root,
		Libraries: filepath.Join(root, "libraries"),
		Natives:   filepath.Join(root, "natives"),
		Runtime:   filepath.Join(root, ".minecraft"),
		Assets:    assets,
		Objects:   filepath.Join(assets, "objects"),
		Indexes:   filepath.Join(assets, "indexes"),
	}
}

// ClientPath is where the client jar is stored.
func (l Layout) ClientPath() string {
	return filepath.Join(l.Root, ClientJar)
}

// Create makes every directory of the layout. Existing directories are kept.
func (l Layout) Create() error {
	for _, dir := range []string{l.Root, l.Libraries, l.Natives, l.Runtime, l.Assets, l.Objects, l.Indexes} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
