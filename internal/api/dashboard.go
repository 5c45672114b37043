package api

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>NewsLens</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Inter', -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .header { background: linear-gradient(135deg, #1e293b, #334155); padding: 1.5rem 2rem; border-bottom: 1px solid #475569; display: flex; justify-content: space-between; align-items: center; }
        .header h1 { font-size: 1.5rem; background: linear-gradient(135deg, #38bdf8, #818cf8); background-clip: text; -webkit-background-clip: text; -webkit-text-fill-color: transparent; }
        .header .status { padding: 0.5rem 1rem; border-radius: 9999px; font-size: 0.875rem; font-weight: 600; }
        .status.running { background: #166534; color: #4ade80; }
        .status.idle { background: #854d0e; color: #fde047; }
        .filters { padding: 1rem 2rem; display: flex; gap: 1rem; }
        .filters select, .filters button { background: #1e293b; color: #e2e8f0; border: 1px solid #475569; border-radius: 8px; padding: 0.4rem 0.8rem; }
        .main { display: grid; grid-template-columns: 1fr 1fr; gap: 1rem; padding: 0 2rem 2rem; }
        .card { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.5rem; }
        .card h2 { font-size: 1rem; margin-bottom: 0.75rem; }
        .card .label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #94a3b8; }
        .cluster { margin-bottom: 1rem; }
        .cluster ul { margin: 0.5rem 0 0 1rem; font-size: 0.875rem; }
        .cluster a { color: #38bdf8; text-decoration: none; }
        .empty { padding: 2rem; text-align: center; color: #94a3b8; }
        svg { width: 100%; height: 420px; background: #0f172a; border-radius: 8px; }
        .footer { text-align: center; padding: 1rem; color: #475569; font-size: 0.75rem; }
    </style>
</head>
<body>
    <div class="header">
        <h1>NewsLens</h1>
        <span class="status idle" id="status">idle</span>
    </div>
    <div class="filters">
        <select id="newspaper"><option value="">All newspapers</option></select>
        <select id="category"><option value="">All categories</option></select>
        <button id="run">Run now</button>
    </div>
    <div id="content" class="main">
        <div class="card"><h2>Article map</h2><svg id="map" viewBox="0 0 400 400"></svg></div>
        <div class="card"><h2>Clusters</h2><div id="clusters"></div></div>
    </div>
    <div class="footer" id="footer">Auto-refreshes every 30s</div>
    <script>
        const colors = ['#38bdf8','#f472b6','#4ade80','#fbbf24','#a78bfa','#f87171','#2dd4bf','#fb923c'];
        const esc = s => String(s).replace(/[&<>"]/g, c => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));
        let options = null;

        async function refresh() {
            try {
                const st = await (await fetch('/api/status')).json();
                const running = st.scheduler && st.scheduler.running;
                const el = document.getElementById('status');
                el.textContent = running ? 'running' : 'idle';
                el.className = 'status ' + (running ? 'running' : 'idle');
            } catch (e) {}

            const params = new URLSearchParams();
            const np = document.getElementById('newspaper').value;
            const cat = document.getElementById('category').value;
            if (np) params.set('newspaper', np);
            if (cat) params.set('category', cat);
            const r = await fetch('/api/clusters?' + params);
            const d = await r.json();
            if (r.status === 503) {
                document.getElementById('clusters').innerHTML = '<div class="empty">No data yet</div>';
                document.getElementById('map').innerHTML = '';
                return;
            }
            if (!options) fillOptions(d.clusters);
            render(d);
        }

        function fillOptions(clusters) {
            options = { newspaper: new Set(), category: new Set() };
            clusters.forEach(c => {
                Object.keys(c.newspapers).forEach(n => options.newspaper.add(n));
                Object.keys(c.categories).forEach(n => options.category.add(n));
            });
            ['newspaper', 'category'].forEach(k => {
                const sel = document.getElementById(k);
                [...options[k]].sort().forEach(v => sel.insertAdjacentHTML('beforeend', '<option>' + esc(v) + '</option>'));
            });
        }

        function render(d) {
            const pts = d.clusters.flatMap(c => (c.articles || []).map(a => ({...a, cluster: c.id})));
            const xs = pts.map(p => p.x), ys = pts.map(p => p.y);
            const [minX, maxX, minY, maxY] = [Math.min(...xs), Math.max(...xs), Math.min(...ys), Math.max(...ys)];
            const sx = x => 20 + 360 * (x - minX) / ((maxX - minX) || 1);
            const sy = y => 380 - 360 * (y - minY) / ((maxY - minY) || 1);
            document.getElementById('map').innerHTML = pts.map(p =>
                '<circle cx="' + sx(p.x) + '" cy="' + sy(p.y) + '" r="5" fill="' + colors[p.cluster % colors.length] + '"><title>' + esc(p.title) + '</title></circle>').join('');

            document.getElementById('clusters').innerHTML = d.clusters.map(c =>
                '<div class="cluster"><span class="label" style="color:' + colors[c.id % colors.length] + '">Cluster ' + c.id + ' (' + c.size + ')</span>' +
                '<div>' + esc(c.label) + '</div><ul>' +
                (c.articles || []).slice(0, 10).map(a => '<li><a href="' + esc(a.url) + '" target="_blank">' + esc(a.title) + '</a> ' + esc(a.newspaper) + ' ' + esc(a.date) + '</li>').join('') +
                '</ul></div>').join('');
            document.getElementById('footer').textContent = 'Generation ' + d.generation + ', ' + d.total + ' articles';
        }

        document.getElementById('newspaper').onchange = refresh;
        document.getElementById('category').onchange = refresh;
        document.getElementById('run').onclick = async () => { await fetch('/api/run', {method: 'POST'}); refresh(); };
        setInterval(refresh, 30000);
        refresh();
    </script>
</body>
</html>`
