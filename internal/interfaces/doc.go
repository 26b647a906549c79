// Package interfaces holds compile-time checks tying the diary's concrete
// types to the narrow interfaces their consumers declare.
//
// Consumers define the interface they need next to the code that uses it
// (http.EntryStore, diary.Transcriber, scheduler.Enqueuer, ...) and the
// concrete types live in their own packages:
//
//   - database.Store: the entry store, the single owner of the diary file
//   - settingsstore.SettingsStore: diary preferences, Gemini key, backup config
//   - diary.Recorder: audio file to transcript to stored entry
//   - backup.Service: snapshot, upload, restore through a storage.Client
//   - tasks.Client: the backlite queue for transcription, backups and cleanup
//
// # Adding a New Backup Provider
//
//  1. Implement storage.Client in internal/storage/providers/<name>/
//
//  2. If it authenticates with OAuth, add an oauth2.Provider under
//     internal/oauth2/providers/ and register it in entrypoint.NewRegistry
//
//  3. Return it from backup.ProviderResolver.Resolve for its provider name
//
//  4. Add a compile-time check to checks.go:
//
//     var _ storage.Client = (*myprovider.Client)(nil)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
package interfaces
