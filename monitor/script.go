package monitor

// statusPageJS polls progress every 2s while a backfill runs and wires the
// action buttons.
const statusPageJS = `(function () {
  'use strict';

  var cfg = window.bomAnalytics || {};
  var pollTimer = null;

  function post(action, timeoutMs) {
    var body = new FormData();
    body.append('nonce', cfg.nonce);
    var ctrl = new AbortController();
    var timer = timeoutMs ? setTimeout(function () { ctrl.abort(); }, timeoutMs) : null;
    return fetch(cfg.actionsBase + '/' + action, {
      method: 'POST',
      body: body,
      credentials: 'same-origin',
      headers: { 'X-WP-Nonce': cfg.nonce },
      signal: ctrl.signal
    }).then(function (res) {
      return res.json();
    }).finally(function () {
      if (timer) { clearTimeout(timer); }
    });
  }

  function showResult(ok, message) {
    var el = document.getElementById('action-result');
    el.className = 'notice ' + (ok ? 'notice-success' : 'notice-error');
    el.innerHTML = '';
    var p = document.createElement('p');
    p.textContent = message;
    el.appendChild(p);
    el.style.display = 'block';
  }

  function errorMessage(response) {
    return (response && response.data && response.data.message) || 'An error occurred.';
  }

  function updateProgress() {
    post('progress').then(function (response) {
      if (!response.success || !response.data) { return; }
      var progress = response.data.progress;
      var sync = response.data.sync;

      var text = document.getElementById('backfill-progress-text');
      if (text) {
        text.textContent = progress.processed + ' / ' + progress.total + ' orders (' + progress.percent + '%)';
      }
      var bar = document.getElementById('backfill-progress-bar');
      if (bar) { bar.style.width = progress.percent + '%'; }

      if (sync) {
        var synced = document.getElementById('synced-boms');
        if (synced) { synced.textContent = sync.synced_boms.toLocaleString(); }
        var coverage = document.getElementById('sync-coverage');
        if (coverage) {
          coverage.querySelector('strong').textContent = sync.sync_percent + '%';
          coverage.querySelector('.progress-fill').style.width = sync.sync_percent + '%';
        }
      }

      if (progress.status === 'completed') {
        stopPolling();
        showResult(true, 'Backfill completed! Processed ' + progress.processed + ' orders.');
        setTimeout(function () { location.reload(); }, 2000);
      }
    }).catch(function () {
      // keep polling
    });
  }

  function startPolling() {
    stopPolling();
    pollTimer = setInterval(updateProgress, 2000);
    updateProgress();
  }

  function stopPolling() {
    if (pollTimer) {
      clearInterval(pollTimer);
      pollTimer = null;
    }
  }

  function runAction(button, busyLabel, action, opts) {
    var idleLabel = button.textContent;
    button.disabled = true;
    button.textContent = busyLabel;
    document.getElementById('action-result').style.display = 'none';

    post(action, opts.timeout).then(function (response) {
      if (response.success) {
        showResult(true, response.data.message);
        if (opts.reloadAfter) {
          setTimeout(function () { location.reload(); }, opts.reloadAfter);
        }
      } else {
        showResult(false, errorMessage(response));
      }
    }).catch(function () {
      showResult(false, 'An error occurred.');
    }).finally(function () {
      button.disabled = false;
      button.textContent = idleLabel;
    });
  }

  document.addEventListener('DOMContentLoaded', function () {
    var backfill = document.getElementById('backfill-btn');
    var clear = document.getElementById('clear-analytics-btn');
    var testSync = document.getElementById('test-sync-btn');

    backfill.addEventListener('click', function (e) {
      e.preventDefault();
      if (!confirm('This will sync all historical BOM data to WooCommerce Analytics.\n\nThis may take 10-30 seconds. Please wait...\n\nContinue?')) {
        return;
      }
      runAction(backfill, 'Processing (this may take 30 seconds)...', 'backfill', { timeout: 120000, reloadAfter: 2000 });
    });

    clear.addEventListener('click', function (e) {
      e.preventDefault();
      if (!confirm('This will remove all BOM data from WooCommerce Analytics.\n\nYou can restore it by running the backfill again.\n\nContinue?')) {
        return;
      }
      runAction(clear, 'Clearing...', 'clear', { reloadAfter: 1000 });
    });

    testSync.addEventListener('click', function (e) {
      e.preventDefault();
      runAction(testSync, 'Testing...', 'test-sync', {});
    });

    var status = document.querySelector('.backfill-status');
    if (status && status.getAttribute('data-status') === 'running') {
      startPolling();
    }
  });
})();
`
