// Package files stores uploaded datasets and generated artifacts in flat
// directories under sanitised names.
//
// Example usage:
//
//	store := files.NewStore(paths.UploadsDir, cfg.Server.MaxUploadBytes, []string{".csv", ".xlsx"}, logger)
//	name, err := store.Save(ctx, header.Filename, file)
//	f, err := store.Open(name)
package files
