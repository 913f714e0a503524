package api

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>docgate</title>
<style>
*,*::before,*::after{box-sizing:border-box;margin:0;padding:0}
body{font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",sans-serif;background:#0f1115;color:#e3e6ea;padding:2rem}
h1{font-size:1.4rem;margin-bottom:1.5rem;display:flex;align-items:center;gap:.6rem}
.dot{width:.6rem;height:.6rem;border-radius:50%;background:#555}
.dot.healthy{background:#3fb950}
.dot.unhealthy{background:#f85149}
.cards{display:grid;grid-template-columns:repeat(auto-fit,minmax(180px,1fr));gap:1rem;margin-bottom:2rem}
.card{background:#171b21;border:1px solid #262b33;border-radius:8px;padding:1rem}
.card-label{font-size:.75rem;color:#8b949e;text-transform:uppercase;letter-spacing:.04em}
.card-value{font-size:1.6rem;margin-top:.3rem}
table{width:100%;border-collapse:collapse;font-size:.85rem}
th,td{text-align:left;padding:.5rem .75rem;border-bottom:1px solid #262b33}
th{color:#8b949e;font-weight:500}
a{color:#58a6ff}
.refresh{font-size:.75rem;color:#8b949e;margin-top:1rem}
</style>
</head>
<body>
<h1><span class="dot" id="healthDot"></span>docgate</h1>

<div class="cards">
  <div class="card"><div class="card-label">Backend Status</div><div class="card-value" id="backendStatus">-</div></div>
  <div class="card"><div class="card-label">Active Connections</div><div class="card-value" id="connActive">-</div></div>
  <div class="card"><div class="card-label">Idle Connections</div><div class="card-value" id="connIdle">-</div></div>
  <div class="card"><div class="card-label">Uptime (s)</div><div class="card-value" id="uptime">-</div></div>
</div>

<table>
  <tbody id="detailBody"></tbody>
</table>

<div class="refresh">Auto-refreshing every 5s. Raw data: <a href="/status">/status</a>, <a href="/healthz">/healthz</a>, <a href="/metrics">/metrics</a>.</div>

<script>
function g(id){return document.getElementById(id)}
function apiFetch(path){return fetch(path).then(function(r){return r.json()})}

function renderRow(label, value){
  return '<tr><td>' + label + '</td><td>' + value + '</td></tr>'
}

function refresh(){
  apiFetch('/healthz').then(function(h){
    var healthy = h.status === 'healthy'
    g('healthDot').className = 'dot ' + (healthy ? 'healthy' : 'unhealthy')
    g('backendStatus').textContent = h.status || 'unknown'
  }).catch(function(){
    g('healthDot').className = 'dot unhealthy'
    g('backendStatus').textContent = 'unreachable'
  })

  apiFetch('/status').then(function(s){
    g('uptime').textContent = s.uptime_seconds
    if (s.pool) {
      g('connActive').textContent = s.pool.active
      g('connIdle').textContent = s.pool.idle
    }
    var rows = ''
    rows += renderRow('Go version', s.go_version)
    rows += renderRow('Goroutines', s.goroutines)
    rows += renderRow('Memory (MB)', s.memory_mb ? s.memory_mb.toFixed(2) : '-')
    if (s.backend) {
      rows += renderRow('Backend host', s.backend.host + ':' + s.backend.port)
      rows += renderRow('Backend database', s.backend.dbname)
    }
    if (s.pool) {
      rows += renderRow('Pool max', s.pool.max)
      rows += renderRow('Pool waiting', s.pool.waiting)
    }
    g('detailBody').innerHTML = rows
  }).catch(function(){})
}

refresh()
setInterval(refresh, 5000)
</script>
</body>
</html>
`
