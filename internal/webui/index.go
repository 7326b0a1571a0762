package webui

const defaultIndexHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Deepsearch</title>
  <style>
    body { font-family: "Segoe UI", sans-serif; margin: 0; background: linear-gradient(145deg,#f7fafc,#e9eef7); color: #1f2937; }
    .wrap { max-width: 900px; margin: 0 auto; padding: 20px; }
    .panel { background: #fff; border-radius: 12px; box-shadow: 0 8px 30px rgba(15,23,42,.08); padding: 16px; }
    .bar { display: flex; justify-content: space-between; align-items: center; gap: 8px; }
    #log { min-height: 320px; max-height: 60vh; overflow: auto; border: 1px solid #d1d5db; border-radius: 8px; padding: 12px; background: #f9fafb; }
    .who { font-size: 13px; font-weight: 600; margin: 12px 0 4px; }
    .src { font-size: 12px; background: #eef2f7; border-radius: 6px; padding: 6px 8px; margin-top: 4px; }
    .row { display: flex; gap: 8px; margin-top: 10px; }
    input, select { flex: 1; padding: 10px; border: 1px solid #cbd5e1; border-radius: 8px; }
    button { padding: 10px 16px; border: 0; border-radius: 8px; background: #0f766e; color: #fff; cursor: pointer; }
    button:hover { background: #0d9488; }
    button:disabled { background: #94a3b8; cursor: default; }
    .warn { font-size: 12px; color: #a16207; margin-top: 12px; }
  </style>
</head>
<body>
  <div class="wrap">
    <div class="panel">
      <div class="bar">
        <h2>Deepsearch</h2>
        <div>
          <select id="chats"></select>
          <button id="new">New Chat</button>
          <button id="del">Delete</button>
          <button id="key">API Key</button>
        </div>
      </div>
      <div id="log"></div>
      <div class="row">
        <input id="msg" placeholder="Ask a question..." />
        <button id="send">Send</button>
      </div>
      <div class="warn">Disclaimer: Content may be inaccurate. Use with discretion.</div>
    </div>
  </div>
  <script>
    const $ = (id) => document.getElementById(id);
    let active = null;
    const api = async (method, url, body) => {
      const resp = await fetch(url, { method, headers: {'Content-Type':'application/json'}, body: body ? JSON.stringify(body) : undefined });
      return { ok: resp.ok, status: resp.status, data: await resp.json() };
    };
    const esc = (s) => String(s).replace(/[&<>"]/g, (c) => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;'}[c]));
    function show(chat) {
      active = chat;
      $('log').innerHTML = chat.messages.map((m) => {
        const who = '<div class="who">' + (m.role === 'user' ? 'You' : 'Deepsearch') + '</div>';
        const body = m.role === 'user' ? '<div>' + esc(m.content) + '</div>' : (m.html || esc(m.content));
        const srcs = ((m.metadata && m.metadata.sources) || []).map((s) =>
          '<div class="src"><b>' + esc(s.title) + '</b> <a href="' + esc(s.url) + '" target="_blank" rel="noopener noreferrer">Visit</a><br/>' + esc(s.snippet) + '</div>').join('');
        return who + body + srcs;
      }).join('');
      $('log').scrollTop = $('log').scrollHeight;
    }
    async function refresh() {
      const { data } = await api('GET', '/api/chats');
      $('chats').innerHTML = data.chats.map((c) => '<option value="' + c.id + '"' + (active && c.id === active.id ? ' selected' : '') + '>' + esc(c.title) + '</option>').join('');
    }
    async function load() { show((await api('GET', '/api/session')).data); await refresh(); }
    async function send() {
      const text = $('msg').value.trim();
      if (!text || !active) return;
      $('send').disabled = true; $('msg').disabled = true;
      try {
        const { data } = await api('POST', '/api/chats/' + active.id + '/ask', { text });
        if (data.chat) show(data.chat);
        if (data.error) alert(data.error);
        $('msg').value = '';
      } finally {
        $('send').disabled = false; $('msg').disabled = false;
        await refresh();
      }
    }
    $('send').addEventListener('click', send);
    $('msg').addEventListener('keydown', (e) => { if (e.key === 'Enter' && !e.shiftKey) { e.preventDefault(); send(); } });
    $('new').addEventListener('click', async () => { show((await api('POST', '/api/chats')).data); await refresh(); });
    $('del').addEventListener('click', async () => { if (active) { await api('DELETE', '/api/chats/' + active.id); await load(); } });
    $('chats').addEventListener('change', async (e) => { show((await api('PUT', '/api/session', { id: e.target.value })).data); });
    $('key').addEventListener('click', async () => {
      const k = prompt('Nebula API key (empty to clear)');
      if (k === null) return;
      await api(k ? 'PUT' : 'DELETE', '/api/settings/api-key', k ? { api_key: k } : undefined);
    });
    load();
  </script>
</body>
</html>`
