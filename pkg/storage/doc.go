// Package storage writes collection results to disk.
//
// Files are written atomically: content goes to a ".tmp" sibling which is
// renamed over the destination once complete.
//
//	manager, err := storage.NewManager("output")
//	if err != nil {
//	    return err
//	}
//	path, err := manager.SaveTokenImages("ethereum_token_images.csv", rows)
package storage
