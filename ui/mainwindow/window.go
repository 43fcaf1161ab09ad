// Package mainwindow provides the main application window.
package mainwindow

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"stackview/internal/app"
	svimage "stackview/internal/image"
	"stackview/internal/logging"
	"stackview/internal/project"
	"stackview/internal/stack"
	"stackview/internal/version"
	"stackview/ui/canvas"
	"stackview/ui/prefs"
)

const appTitle = "Stack Viewer"

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app    fyne.App
	state  *app.State
	prefs  *prefs.Prefs
	logger *slog.Logger

	canvas *canvas.ViewerCanvas
	player *app.Player

	statusBar     *widget.Label
	frameSlider   *widget.Slider
	frameLabel    *widget.Label
	channelSlider *widget.Slider
	channelLabel  *widget.Label
	sliders       *fyne.Container
	playBtn       *widget.Button
	drawBtn       *widget.Button

	recentMenu *fyne.MenuItem
}

// New creates a new main window.
func New(fyneApp fyne.App, state *app.State, p *prefs.Prefs, logger *slog.Logger) *MainWindow {
	mw := &MainWindow{
		Window: fyneApp.NewWindow(appTitle),
		app:    fyneApp,
		state:  state,
		prefs:  p,
		logger: logging.OrDiscard(logger),
		player: app.NewPlayer(state),
	}

	mw.setupUI()
	mw.setupMenus()
	mw.setupEventHandlers()

	mw.Resize(fyne.NewSize(
		float32(p.FloatWithFallback(prefs.KeyWindowWidth, 1024)),
		float32(p.FloatWithFallback(prefs.KeyWindowHeight, 768)),
	))
	mw.SetCloseIntercept(func() {
		mw.SavePreferences()
		mw.player.Pause()
		mw.Close()
	})
	return mw
}

// setupUI creates the main UI layout.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewViewerCanvas(mw.state, mw.logger)
	mw.statusBar = widget.NewLabel("Ready")
	mw.canvas.OnStatus(mw.updateStatus)

	mw.frameLabel = widget.NewLabel("")
	mw.frameSlider = widget.NewSlider(0, 1)
	mw.frameSlider.Step = 1
	mw.frameSlider.OnChanged = func(v float64) {
		if err := mw.state.SetFrame(int(v)); err != nil && !errors.Is(err, stack.ErrOutOfRange) {
			mw.logger.Warn("set frame", "error", err)
		}
	}

	mw.channelLabel = widget.NewLabel("")
	mw.channelSlider = widget.NewSlider(0, 1)
	mw.channelSlider.Step = 1
	mw.channelSlider.OnChanged = func(v float64) {
		if err := mw.state.SetChannel(int(v)); err != nil && !errors.Is(err, stack.ErrOutOfRange) {
			mw.logger.Warn("set channel", "error", err)
		}
	}

	mw.sliders = container.NewVBox(
		container.NewBorder(nil, nil, mw.frameLabel, nil, mw.frameSlider),
		container.NewBorder(nil, nil, mw.channelLabel, nil, mw.channelSlider),
	)
	mw.configureSliders(stack.Shape{})

	content := container.NewBorder(
		mw.createToolbar(),
		container.NewVBox(mw.sliders, container.NewPadded(mw.statusBar)),
		nil,
		nil,
		mw.canvas,
	)
	mw.SetContent(content)
}

// createToolbar creates the toolbar with view and playback controls.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	mw.playBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), mw.onTogglePlay)
	mw.drawBtn = widget.NewButtonWithIcon("", theme.ContentAddIcon(), mw.onToggleDrawROI)

	return container.NewHBox(
		widget.NewButtonWithIcon("", theme.FolderOpenIcon(), mw.onOpen),
		widget.NewSeparator(),
		widget.NewButtonWithIcon("", theme.ZoomOutIcon(), mw.onZoomOut),
		widget.NewButtonWithIcon("", theme.ZoomFitIcon(), mw.onResetView),
		mw.drawBtn,
		widget.NewSeparator(),
		mw.playBtn,
	)
}

// setupMenus creates the application menus.
func (mw *MainWindow) setupMenus() {
	mw.recentMenu = fyne.NewMenuItem("Open Recent", nil)
	mw.refreshRecent()

	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open...", mw.onOpen),
		mw.recentMenu,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Open Session...", mw.onOpenSession),
		fyne.NewMenuItem("Save Session As...", mw.onSaveSession),
	)

	var interp []*fyne.MenuItem
	for _, m := range []svimage.Interpolation{svimage.InterpNearest, svimage.InterpBilinear, svimage.InterpCatmullRom} {
		m := m
		interp = append(interp, fyne.NewMenuItem(m.String(), func() { mw.canvas.SetInterpolation(m) }))
	}
	interpItem := fyne.NewMenuItem("Interpolation", nil)
	interpItem.ChildMenu = fyne.NewMenu("", interp...)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom Out", mw.onZoomOut),
		fyne.NewMenuItem("Reset View", mw.onResetView),
		fyne.NewMenuItemSeparator(),
		interpItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Play / Pause", mw.onTogglePlay),
		fyne.NewMenuItem("Next Frame", func() { mw.state.StepFrame(1) }),
		fyne.NewMenuItem("Previous Frame", func() { mw.state.StepFrame(-1) }),
	)

	roiMenu := fyne.NewMenu("Regions",
		fyne.NewMenuItem("Draw Regions", mw.onToggleDrawROI),
		fyne.NewMenuItem("Delete Selected Region", mw.onDeleteROI),
		fyne.NewMenuItem("Clear Regions", mw.onClearROIs),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", mw.onAbout),
	)

	mw.SetMainMenu(fyne.NewMainMenu(fileMenu, viewMenu, roiMenu, helpMenu))
}

func (mw *MainWindow) refreshRecent() {
	recent := mw.prefs.Strings(prefs.KeyRecent)
	var items []*fyne.MenuItem
	for _, path := range recent {
		path := path
		items = append(items, fyne.NewMenuItem(filepath.Base(path), func() { mw.OpenFile(path) }))
	}
	if len(items) == 0 {
		item := fyne.NewMenuItem("(none)", nil)
		item.Disabled = true
		items = append(items, item)
	}
	mw.recentMenu.ChildMenu = fyne.NewMenu("", items...)
}

// setupEventHandlers registers for application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventSourceReplaced, func(data interface{}) {
		if shape, ok := data.(stack.Shape); ok {
			mw.configureSliders(shape)
		}
	})

	mw.state.On(app.EventFrameChanged, func(data interface{}) {
		if k, ok := data.(stack.Key); ok {
			mw.syncSliders(k)
		}
	})

	mw.state.On(app.EventDecodeError, func(data interface{}) {
		if err, ok := data.(error); ok {
			mw.logger.Error("decode failed", "error", err)
			dialog.ShowError(err, mw.Window)
		}
	})

	mw.state.On(app.EventClick, func(data interface{}) {
		mw.logger.Debug("click", "event", data)
	})
}

// configureSliders sizes the frame and channel sliders to shape and hides
// the ones that have a single position.
func (mw *MainWindow) configureSliders(shape stack.Shape) {
	setup := func(s *widget.Slider, l *widget.Label, n int, name string) bool {
		if n <= 1 {
			s.Hide()
			l.Hide()
			return false
		}
		s.Max = float64(n - 1)
		s.SetValue(0)
		l.SetText(fmt.Sprintf("%s 0/%d", name, n-1))
		s.Show()
		l.Show()
		return true
	}
	frames := setup(mw.frameSlider, mw.frameLabel, shape.Frames, "Frame")
	channels := setup(mw.channelSlider, mw.channelLabel, shape.Channels, "Channel")
	if frames || channels {
		mw.sliders.Show()
	} else {
		mw.sliders.Hide()
	}
}

func (mw *MainWindow) syncSliders(k stack.Key) {
	if mw.frameSlider.Value != float64(k.Frame) {
		mw.frameSlider.SetValue(float64(k.Frame))
	}
	mw.frameLabel.SetText(fmt.Sprintf("Frame %d/%d", k.Frame, int(mw.frameSlider.Max)))
	if mw.channelSlider.Value != float64(k.Channel) {
		mw.channelSlider.SetValue(float64(k.Channel))
	}
	mw.channelLabel.SetText(fmt.Sprintf("Channel %d/%d", k.Channel, int(mw.channelSlider.Max)))
}

// updateStatus updates the status bar text.
func (mw *MainWindow) updateStatus(text string) {
	if text == "" {
		text = "Ready"
	}
	mw.statusBar.SetText(text)
}

// OpenFile loads path into the viewer and records it in the recent list.
func (mw *MainWindow) OpenFile(path string) {
	mw.player.Pause()
	if err := mw.state.OpenFile(path); err != nil {
		mw.logger.Error("open failed", "path", path, "error", err)
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.SetTitle(appTitle + " - " + filepath.Base(path))
	mw.prefs.AddRecent(path)
	mw.refreshRecent()
	if err := mw.prefs.SaveIfChanged(); err != nil {
		mw.logger.Warn("saving preferences", "error", err)
	}
}

// getLastDir returns the last used directory as a ListableURI, or nil.
func (mw *MainWindow) getLastDir() fyne.ListableURI {
	path := mw.prefs.String(prefs.KeyLastDir)
	if path == "" {
		return nil
	}
	listable, err := storage.ListerForURI(storage.NewFileURI(path))
	if err != nil {
		return nil
	}
	return listable
}

// SavePreferences records the window size and writes preferences.
func (mw *MainWindow) SavePreferences() {
	if c := mw.Canvas(); c != nil {
		size := c.Size()
		if size.Width > 0 && size.Height > 0 {
			mw.prefs.SetFloat(prefs.KeyWindowWidth, float64(size.Width))
			mw.prefs.SetFloat(prefs.KeyWindowHeight, float64(size.Height))
		}
	}
	if err := mw.prefs.SaveIfChanged(); err != nil {
		mw.logger.Warn("saving preferences", "error", err)
	}
}

// Menu action handlers

func (mw *MainWindow) onOpen() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		mw.OpenFile(reader.URI().Path())
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter(svimage.SupportedFormats()))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onOpenSession() {
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		reader.Close()
		mw.OpenSession(reader.URI().Path())
	}, mw.Window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{project.Extension}))
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

// OpenSession restores a saved session.
func (mw *MainWindow) OpenSession(path string) {
	mw.player.Pause()
	if err := mw.state.RestoreSession(path); err != nil {
		mw.logger.Error("restore session failed", "path", path, "error", err)
		dialog.ShowError(err, mw.Window)
		return
	}
	mw.SetTitle(appTitle + " - " + filepath.Base(mw.state.Path()))
	mw.canvas.Refresh()
}

func (mw *MainWindow) onSaveSession() {
	fd := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		writer.Close()
		path := writer.URI().Path()
		if filepath.Ext(path) != project.Extension {
			path += project.Extension
		}
		if err := mw.state.SaveSession(path); err != nil {
			dialog.ShowError(err, mw.Window)
		}
	}, mw.Window)
	fd.SetFileName("session" + project.Extension)
	if loc := mw.getLastDir(); loc != nil {
		fd.SetLocation(loc)
	}
	fd.Show()
}

func (mw *MainWindow) onZoomOut() {
	mw.state.ZoomOut()
	mw.canvas.Refresh()
}

func (mw *MainWindow) onResetView() {
	mw.state.ResetView()
	mw.canvas.Refresh()
}

func (mw *MainWindow) onTogglePlay() {
	if mw.player.Playing() {
		mw.player.Pause()
		mw.playBtn.SetIcon(theme.MediaPlayIcon())
		return
	}
	if !mw.player.Play() {
		return
	}
	mw.playBtn.SetIcon(theme.MediaPauseIcon())
	go func() {
		mw.player.Wait()
		mw.playBtn.SetIcon(theme.MediaPlayIcon())
	}()
}

// onToggleDrawROI switches left drags between zooming and drawing regions.
func (mw *MainWindow) onToggleDrawROI() {
	on := !mw.state.DrawingROI()
	mw.state.SetDrawROI(on)
	if on {
		mw.drawBtn.Importance = widget.HighImportance
	} else {
		mw.drawBtn.Importance = widget.MediumImportance
	}
	mw.drawBtn.Refresh()
}

func (mw *MainWindow) onDeleteROI() {
	if err := mw.state.DeleteSelectedROI(); err != nil {
		mw.logger.Debug("delete region", "error", err)
	}
}

func (mw *MainWindow) onClearROIs() {
	mw.state.ROIs().Clear()
	mw.canvas.Refresh()
}

func (mw *MainWindow) onAbout() {
	dialog.ShowInformation("About "+appTitle,
		fmt.Sprintf("%s v%s\n\n"+
			"Interactive viewer for image stacks.\n\n"+
			"Built: %s\n"+
			"Commit: %s",
			appTitle, version.Version, version.BuildTime, version.GitCommit),
		mw.Window)
}
