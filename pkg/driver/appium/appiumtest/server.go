// Package appiumtest provides an in-process fake Appium server for tests.
package appiumtest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// DefaultSessionID is the handle returned by POST /session.
const DefaultSessionID = "fake-session-1"

// Element is a fake on-screen element.
type Element struct {
	Text       string
	Attributes map[string]string
	Displayed  bool
	Enabled    bool
	X, Y, W, H int
}

// Failure is a canned W3C error response.
type Failure struct {
	Status  int
	Code    string
	Message string
}

// Request records one handled call.
type Request struct {
	Method string
	Path   string
	Body   map[string]interface{}
}

// Server is a fake Appium server backed by httptest.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	sessionID  string
	live       bool
	caps       map[string]interface{}
	elements   map[string]*Element
	locators   map[string]string // using + "\x00" + value -> element id
	typed      map[string][]string
	clicks     map[string]int
	requests   []Request
	createFail *Failure
	deleteFail *Failure
	rejected   map[string]bool // strategies answered with invalid selector
	notReady   string
	delay      time.Duration // added to every element lookup
	source     string
	screenshot []byte
	nextID     int
}

// New starts a fake server. Close it when done.
func New() *Server {
	s := &Server{
		sessionID:  DefaultSessionID,
		elements:   make(map[string]*Element),
		locators:   make(map[string]string),
		typed:      make(map[string][]string),
		clicks:     make(map[string]int),
		rejected:   make(map[string]bool),
		source:     `<hierarchy><android.widget.FrameLayout bounds="[0,0][1080,1920]"/></hierarchy>`,
		screenshot: []byte("\x89PNG fake"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/session", s.handleCreate).Methods(http.MethodPost)
	r.Handle("/session/{sid}", s.requireSession(http.HandlerFunc(s.handleDelete))).Methods(http.MethodDelete)

	sess := r.PathPrefix("/session/{sid}").Subrouter()
	sess.Use(s.requireSession)
	sess.HandleFunc("/element", s.handleFind).Methods(http.MethodPost)
	sess.HandleFunc("/elements", s.handleFindAll).Methods(http.MethodPost)
	sess.HandleFunc("/element/{eid}/click", s.handleClick).Methods(http.MethodPost)
	sess.HandleFunc("/element/{eid}/clear", s.handleClear).Methods(http.MethodPost)
	sess.HandleFunc("/element/{eid}/value", s.handleValue).Methods(http.MethodPost)
	sess.HandleFunc("/element/{eid}/text", s.handleText).Methods(http.MethodGet)
	sess.HandleFunc("/element/{eid}/displayed", s.handleDisplayed).Methods(http.MethodGet)
	sess.HandleFunc("/element/{eid}/enabled", s.handleEnabled).Methods(http.MethodGet)
	sess.HandleFunc("/element/{eid}/rect", s.handleRect).Methods(http.MethodGet)
	sess.HandleFunc("/element/{eid}/attribute/{name}", s.handleAttribute).Methods(http.MethodGet)
	sess.HandleFunc("/screenshot", s.handleScreenshot).Methods(http.MethodGet)
	sess.HandleFunc("/source", s.handleSource).Methods(http.MethodGet)
	sess.HandleFunc("/window/rect", s.handleWindowRect).Methods(http.MethodGet)
	sess.HandleFunc("/{rest:.*}", s.handleNull).Methods(http.MethodPost)

	s.Server = httptest.NewServer(s.record(r))
	return s
}

// AddElement makes an element findable by strategy and selector and returns its id.
// Registering the same element id under more selectors is done with Alias.
func (s *Server) AddElement(using, value string, el Element) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("el-%d", s.nextID)
	e := el
	s.elements[id] = &e
	s.locators[using+"\x00"+value] = id
	return id
}

// Alias makes an existing element findable by another selector.
func (s *Server) Alias(id, using, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locators[using+"\x00"+value] = id
}

// RemoveElement makes a selector stop matching.
func (s *Server) RemoveElement(using, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locators, using+"\x00"+value)
}

// Update changes an element in place.
func (s *Server) Update(id string, fn func(*Element)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.elements[id]; ok {
		fn(el)
	}
}

// RejectStrategy answers every lookup using strategy with "invalid selector".
func (s *Server) RejectStrategy(using string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[using] = true
}

// NotReady makes GET /status report ready=false with message.
func (s *Server) NotReady(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notReady = message
}

// DelayLookups makes every element lookup take at least d. A lookup whose
// client gives up earlier is abandoned.
func (s *Server) DelayLookups(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// FailCreate makes POST /session fail.
func (s *Server) FailCreate(f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createFail = &f
}

// FailDelete makes DELETE /session/{id} fail.
func (s *Server) FailDelete(f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFail = &f
}

// SetSource sets the page source XML.
func (s *Server) SetSource(xml string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = xml
}

// Capabilities returns the alwaysMatch map of the last session request.
func (s *Server) Capabilities() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// Live reports whether a session is open.
func (s *Server) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Typed returns the text sent to an element.
func (s *Server) Typed(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.typed[id]...)
}

// Clicks returns how often an element was clicked.
func (s *Server) Clicks(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clicks[id]
}

// Requests returns a copy of the request log.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests matched method and path suffix.
func (s *Server) Count(method, suffix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasSuffix(r.Path, suffix) {
			n++
		}
	}
	return n
}

// Finds returns how many element lookups used strategy.
func (s *Server) Finds(using string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == http.MethodPost && strings.HasSuffix(r.Path, "/element") && r.Body["using"] == using {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
		s.mu.Unlock()
		next.ServeHTTP(w, withBody(r, body))
	})
}

type bodyKey struct{}

func withBody(r *http.Request, body map[string]interface{}) *http.Request {
	return r.WithContext(contextWithBody(r.Context(), body))
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ok := s.live && mux.Vars(r)["sid"] == s.sessionID
		s.mu.Unlock()
		if !ok {
			writeError(w, Failure{Status: http.StatusNotFound, Code: "invalid session id", Message: "session is either terminated or not started"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	msg := s.notReady
	s.mu.Unlock()
	if msg != "" {
		writeValue(w, map[string]interface{}{"ready": false, "message": msg})
		return
	}
	writeValue(w, map[string]interface{}{"ready": true, "message": "fake appium"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body := bodyFrom(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createFail != nil {
		writeError(w, *s.createFail)
		return
	}
	caps, _ := body["capabilities"].(map[string]interface{})
	s.caps, _ = caps["alwaysMatch"].(map[string]interface{})
	s.live = true
	returned := map[string]interface{}{}
	for k, v := range s.caps {
		returned[k] = v
	}
	writeValue(w, map[string]interface{}{"sessionId": s.sessionID, "capabilities": returned})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteFail != nil {
		writeError(w, *s.deleteFail)
		return
	}
	s.live = false
	writeValue(w, nil)
}

func (s *Server) lookup(body map[string]interface{}) (string, *Failure) {
	using, _ := body["using"].(string)
	value, _ := body["value"].(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejected[using] {
		return "", &Failure{Status: http.StatusBadRequest, Code: "invalid selector", Message: fmt.Sprintf("locator strategy %q is not supported", using)}
	}
	id, ok := s.locators[using+"\x00"+value]
	if !ok {
		return "", &Failure{Status: http.StatusNotFound, Code: "no such element", Message: "An element could not be located on the page using the given search parameters."}
	}
	return id, nil
}

// stall holds a lookup for the configured delay. It reports false when the
// client went away first.
func (s *Server) stall(r *http.Request) bool {
	s.mu.Lock()
	d := s.delay
	s.mu.Unlock()
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	if !s.stall(r) {
		return
	}
	id, fail := s.lookup(bodyFrom(r))
	if fail != nil {
		writeError(w, *fail)
		return
	}
	writeValue(w, map[string]interface{}{elementKey: id})
}

// AnyElement is the xpath that matches every element on screen.
const AnyElement = "//*"

func (s *Server) handleFindAll(w http.ResponseWriter, r *http.Request) {
	if !s.stall(r) {
		return
	}
	body := bodyFrom(r)
	if body["using"] == "xpath" && body["value"] == AnyElement {
		writeValue(w, s.all())
		return
	}
	id, fail := s.lookup(body)
	if fail != nil {
		if fail.Code == "no such element" {
			writeValue(w, []interface{}{})
			return
		}
		writeError(w, *fail)
		return
	}
	writeValue(w, []interface{}{map[string]interface{}{elementKey: id}})
}

func (s *Server) all() []interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interface{}, 0, len(s.elements))
	for id := range s.elements {
		out = append(out, map[string]interface{}{elementKey: id})
	}
	return out
}

// element resolves {eid} or writes a stale-element error.
func (s *Server) element(w http.ResponseWriter, r *http.Request) (string, *Element) {
	id := mux.Vars(r)["eid"]
	s.mu.Lock()
	el, ok := s.elements[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, Failure{Status: http.StatusNotFound, Code: "stale element reference", Message: "element " + id + " is not attached to the page"})
		return "", nil
	}
	return id, el
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	id, el := s.element(w, r)
	if el == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !el.Enabled {
		writeError(w, Failure{Status: http.StatusBadRequest, Code: "element not interactable", Message: "element is disabled"})
		return
	}
	s.clicks[id]++
	writeValue(w, nil)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id, el := s.element(w, r)
	if el == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	el.Text = ""
	s.typed[id] = append(s.typed[id], "")
	writeValue(w, nil)
}

func (s *Server) handleValue(w http.ResponseWriter, r *http.Request) {
	id, el := s.element(w, r)
	if el == nil {
		return
	}
	text, _ := bodyFrom(r)["text"].(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	el.Text += text
	s.typed[id] = append(s.typed[id], text)
	writeValue(w, nil)
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	if _, el := s.element(w, r); el != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeValue(w, el.Text)
	}
}

func (s *Server) handleDisplayed(w http.ResponseWriter, r *http.Request) {
	if _, el := s.element(w, r); el != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeValue(w, el.Displayed)
	}
}

func (s *Server) handleEnabled(w http.ResponseWriter, r *http.Request) {
	if _, el := s.element(w, r); el != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeValue(w, el.Enabled)
	}
}

func (s *Server) handleRect(w http.ResponseWriter, r *http.Request) {
	if _, el := s.element(w, r); el != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		writeValue(w, map[string]interface{}{"x": el.X, "y": el.Y, "width": el.W, "height": el.H})
	}
}

func (s *Server) handleAttribute(w http.ResponseWriter, r *http.Request) {
	if _, el := s.element(w, r); el != nil {
		name := mux.Vars(r)["name"]
		s.mu.Lock()
		defer s.mu.Unlock()
		if v, ok := el.Attributes[name]; ok {
			writeValue(w, v)
			return
		}
		writeValue(w, nil)
	}
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeValue(w, base64.StdEncoding.EncodeToString(s.screenshot))
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeValue(w, s.source)
}

func (s *Server) handleWindowRect(w http.ResponseWriter, r *http.Request) {
	writeValue(w, map[string]interface{}{"x": 0, "y": 0, "width": 1080, "height": 1920})
}

func (s *Server) handleNull(w http.ResponseWriter, r *http.Request) {
	writeValue(w, nil)
}

func writeValue(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": v})
}

func writeError(w http.ResponseWriter, f Failure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(f.Status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"value": map[string]interface{}{"error": f.Code, "message": f.Message, "stacktrace": ""},
	})
}
