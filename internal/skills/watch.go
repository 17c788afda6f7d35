// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package skills

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the registry from root whenever the bundle directory tree
// changes. Unlike a single-file config watch, this extends to every
// immediate subdirectory since a bundle is a multi-file directory.
// Watch blocks until stop is closed; call it in its own goroutine.
func Watch(root string, r *Registry, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addTree(watcher, root); err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Reload(root); err != nil {
				slog.Warn("skill registry reload failed", "error", err)
				continue
			}
			_ = addTree(watcher, root)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("skill registry watch error", "error", err)
		}
	}
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	bundles, err := LoadDir(root)
	if err != nil {
		return err
	}
	if err := watcher.Add(root); err != nil {
		return err
	}
	for _, b := range bundles {
		_ = watcher.Add(b.Dir)
	}
	return nil
}
