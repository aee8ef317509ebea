// Package storage writes downloaded attachments into their destination
// folders.
//
// A Manager owns one folder. Writers call Claim before fetching anything,
// which makes the existence check and the reservation a single step, then
// Save, which streams into a hidden temp file and renames it over the final
// name. A failed or interrupted download therefore never leaves a partial
// file under the real name, and a rerun skips everything already present.
//
//	m, err := storage.NewManager(folder, cfg.Download.BufferSize)
//	if !m.Claim(name) {
//		return // already have it
//	}
//	if _, err := m.Save(body, name); err != nil {
//		m.Release(name)
//	}
package storage
