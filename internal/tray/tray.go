// Package tray provides the system tray menu for nayana.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle      func(enabled bool)
	onRecalibrate func()
	onOpenBoard   func()
	onQuit        func()
	enabled       bool
	mu            sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
	menuPhase  *systray.MenuItem
}

// New creates a new Tray instance with tracking enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback invoked when tracking is paused or resumed.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnRecalibrate sets the callback invoked by the Recalibrate menu item.
func (t *Tray) OnRecalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecalibrate = fn
}

// OnOpenBoard sets the callback invoked by the Open Board menu item.
func (t *Tray) OnOpenBoard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenBoard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Nayana")
	systray.SetTooltip("Nayana - hands-free tic-tac-toe")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume head tracking")
	systray.AddSeparator()

	t.menuPhase = systray.AddMenuItem(phaseTitle(""), "Current phase")
	t.menuPhase.Disable()
	t.menuStatus = systray.AddMenuItem("Starting...", "Status")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuRecalibrate := systray.AddMenuItem("Recalibrate", "Start a new calibration")
	menuBoard := systray.AddMenuItem("Open Board...", "Open the board in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Nayana")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuRecalibrate.ClickedCh:
				t.handleRecalibrate()
			case <-menuBoard.ClickedCh:
				t.handleOpenBoard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the enabled state and notifies the toggle callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleRecalibrate() {
	t.mu.RLock()
	callback := t.onRecalibrate
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleOpenBoard() {
	t.mu.RLock()
	callback := t.onOpenBoard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus updates the phase and status lines in the menu.
func (t *Tray) SetStatus(phase, status string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuPhase != nil {
		t.menuPhase.SetTitle(phaseTitle(phase))
	}
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(statusTitle(status))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

func phaseTitle(phase string) string {
	if phase == "" {
		return "Phase: -"
	}
	return "Phase: " + phase
}

// maxStatusLen keeps menu items narrow.
const maxStatusLen = 48

func statusTitle(status string) string {
	if status == "" {
		return "-"
	}
	r := []rune(status)
	if len(r) > maxStatusLen {
		return string(r[:maxStatusLen-1]) + "…"
	}
	return status
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}
