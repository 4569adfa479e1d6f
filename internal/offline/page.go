package offline

import (
	"bytes"
	"io"
	"net/http"
)

const offlinePage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>worklog - offline</title>
<style>
body { font-family: system-ui, sans-serif; background: #1a1a2e; color: #e0e0e0; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
main { text-align: center; max-width: 28rem; padding: 2rem; }
h1 { color: #7c3aed; }
button { background: #7c3aed; color: #fff; border: 0; border-radius: 4px; padding: .6rem 1.2rem; cursor: pointer; }
</style>
</head>
<body>
<main>
<h1>You are offline</h1>
<p>worklog could not reach the network and has no cached copy of this page. Running timers keep their start time and will be saved when you stop them.</p>
<button onclick="location.reload()">Retry</button>
</main>
</body>
</html>
`

func offlineResponse(req *http.Request) *http.Response {
	body := []byte(offlinePage)
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("X-Worklog-Cache", "offline")
	return &http.Response{
		Status:        "503 Service Unavailable",
		StatusCode:    http.StatusServiceUnavailable,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
