package picker

import "html/template"

var pageTemplate = template.Must(template.New("picker").Parse(`<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 16px; background: #f4f4f4; }
#img { cursor: crosshair; border: 1px solid #888; display: block; }
#status { margin-top: 8px; min-height: 1.2em; }
</style>
</head>
<body>
<p>家具を置きたい位置を 1 回クリックしてください。</p>
<img id="img" src="image.png" width="{{.Width}}" height="{{.Height}}" alt="layout">
<p id="status"></p>
<button id="cancel" type="button">キャンセル</button>
<script>
(function () {
  var img = document.getElementById("img");
  var status = document.getElementById("status");
  var sent = false;
  img.addEventListener("click", function (e) {
    if (sent) { return; }
    var r = img.getBoundingClientRect();
    var x = Math.floor(e.clientX - r.left);
    var y = Math.floor(e.clientY - r.top);
    sent = true;
    fetch("click", {
      method: "POST",
      headers: { "Content-Type": "application/json" },
      body: JSON.stringify({ x: x, y: y })
    }).then(function (res) {
      if (res.ok) {
        status.textContent = "(" + x + ", " + y + ") を受け付けました。このタブは閉じて構いません。";
        return;
      }
      if (res.status !== 409) { sent = false; }
      status.textContent = "受け付けられませんでした (" + res.status + ")";
    });
  });
  document.getElementById("cancel").addEventListener("click", function () {
    if (sent) { return; }
    sent = true;
    fetch("cancel", { method: "POST" });
    status.textContent = "キャンセルしました。";
  });
  window.addEventListener("pagehide", function () {
    if (!sent) { navigator.sendBeacon("cancel?reason=close"); }
  });
})();
</script>
</body>
</html>
`))

type pageData struct {
	Title  string
	Width  int
	Height int
}
