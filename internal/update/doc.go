// Package update implements PuzzleMania's self-updater.
//
// This package handles:
//   - Fetching and validating the remote release manifest
//   - Comparing dotted numeric versions
//   - Streaming the release into a private temp file
//   - Verifying the download against its SHA-256 digest
//   - Installing it side by side or replacing the running executable
//
// The package is isolated from UI concerns. Decisions and messages go
// through the Confirmer and Notifier interfaces, which the caller
// implements however it wants.
//
// Example usage:
//
//	target, err := update.ResolveTarget("")
//	if err != nil {
//	    // handle error
//	}
//	engine := update.NewEngine(update.EngineConfig{
//	    CurrentVersion: version,
//	    ManifestURL:    manifestURL,
//	}, update.NewInstaller(target), confirmer, notifier)
//	outcome, err := engine.Run(ctx)
//	if err == nil && outcome.ExitRequested {
//	    // the new version is running; exit
//	}
package update
