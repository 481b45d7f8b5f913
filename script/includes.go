package script

// One include per queue component. Each chunk defines a single Lua
// local function; assembly order in script.go satisfies call-before-use.

// Lock manager. Validates and releases a worker's ownership token.
const includeReleaseLock = `
local function releaseLock(jobKey, stalledKey, token, jobId)
  local lockKey = jobKey .. ':lock'
  local lockToken = rcall("GET", lockKey)
  if lockToken == token then
    rcall("DEL", lockKey)
    rcall("SREM", stalledKey, jobId)
    return 0
  elseif lockToken then
    return -6
  else
    return -2
  end
end`

// Event emitter discipline: the stream is trimmed once at procedure
// entry so the procedure's own emissions survive.
const includeTrimEvents = `
local function trimEvents(metaKey, eventStreamKey)
  local maxEvents = rcall("HGET", metaKey, "opts.maxLenEvents")
  if maxEvents ~= false then
    rcall("XTRIM", eventStreamKey, "MAXLEN", "~", maxEvents)
  else
    rcall("XTRIM", eventStreamKey, "MAXLEN", "~", 10000)
  end
end`

// Marker: wake signal for workers blocked on new work.
const includeSetMarker = `
local function setMarkerIfNeeded(markerKey, isPausedOrMaxed)
  if not isPausedOrMaxed then
    rcall("SET", markerKey, "1")
  end
end`

// Priority set insertion: score = priority * 2^32 + counter mod 2^32,
// so equal priorities resolve FIFO through the monotonic counter.
const includeAddJobWithPriority = `
local function addJobWithPriority(markerKey, prioritizedKey, priority, jobId,
                                  priorityCounterKey, isPausedOrMaxed)
  local prioCounter = rcall("INCR", priorityCounterKey)
  local score = priority * 0x100000000 + prioCounter % 0x100000000
  rcall("ZADD", prioritizedKey, score, jobId)
  setMarkerIfNeeded(markerKey, isPausedOrMaxed)
end`

const includeIsQueuePausedOrMaxed = `
local function isQueuePausedOrMaxed(metaKey, activeKey)
  local queueAttributes = rcall("HMGET", metaKey, "paused", "concurrency")
  if queueAttributes[1] then
    return true
  end
  if queueAttributes[2] then
    return rcall("LLEN", activeKey) >= tonumber(queueAttributes[2])
  end
  return false
end`

// Scheduler: move up to 1000 due delayed jobs (score below the timestamp)
// into wait or prioritized.
const includePromoteDelayedJobs = `
local function promoteDelayedJobs(delayedKey, markerKey, waitKey, prioritizedKey,
                                  eventStreamKey, prefix, timestamp,
                                  priorityCounterKey, isPausedOrMaxed)
  local jobs = rcall("ZRANGEBYSCORE", delayedKey, "-inf", "(" .. timestamp,
                     "LIMIT", 0, 1000)
  if #jobs > 0 then
    rcall("ZREM", delayedKey, unpack(jobs))
    for _, jobId in ipairs(jobs) do
      local priority =
        tonumber(rcall("HGET", prefix .. jobId, "priority")) or 0
      if priority == 0 then
        rcall("LPUSH", waitKey, jobId)
        setMarkerIfNeeded(markerKey, isPausedOrMaxed)
      else
        addJobWithPriority(markerKey, prioritizedKey, priority, jobId,
                           priorityCounterKey, isPausedOrMaxed)
      end
      rcall("XADD", eventStreamKey, "*", "event", "waiting", "jobId", jobId,
            "prev", "delayed")
    end
  end
end`

// Rate limiter: remaining window in ms once the counter has hit max.
const includeRateLimit = `
local function getRateLimitTTL(maxJobs, limiterKey)
  if maxJobs then
    local jobCounter = tonumber(rcall("GET", limiterKey) or 0)
    if jobCounter >= maxJobs then
      local pttl = rcall("PTTL", limiterKey)
      if pttl > 0 then
        return pttl
      end
    end
  end
  return 0
end`

const includeNextDelayedTimestamp = `
local function getNextDelayedTimestamp(delayedKey)
  local result = rcall("ZRANGE", delayedKey, 0, 0, "WITHSCORES")
  if result[1] ~= nil then
    return tonumber(result[2])
  end
end`

// Hands a popped job to the caller in one round trip: bumps the rate
// limiter, locks the job for the worker, stamps processedOn and emits
// the active event.
const includePrepareJobForProcessing = `
local function prepareJobForProcessing(prefix, limiterKey, eventStreamKey,
                                       jobId, timestamp, maxJobs, opts)
  local jobKey = prefix .. jobId
  if maxJobs then
    local jobCounter = rcall("INCR", limiterKey)
    if jobCounter == 1 then
      rcall("PEXPIRE", limiterKey, opts['limiter']['duration'])
    end
  end
  local lockDuration = tonumber(opts['lockDuration']) or 0
  if opts['token'] ~= "0" and lockDuration > 0 then
    rcall("SET", jobKey .. ':lock', opts['token'], "PX", lockDuration)
  end
  rcall("HSET", jobKey, "processedOn", timestamp)
  rcall("XADD", eventStreamKey, "*", "event", "active", "jobId", jobId,
        "prev", "waiting")
  return {rcall("HGETALL", jobKey), jobId, 0, 0}
end`

const includeMoveJobFromPriorityToActive = `
local function moveJobFromPriorityToActive(prioritizedKey, activeKey)
  local popped = rcall("ZPOPMIN", prioritizedKey)
  if popped[1] then
    rcall("LPUSH", activeKey, popped[1])
    return popped[1]
  end
end`

// Finalizer helpers: full removal of a job and its sub-keys, plus the
// retention trims by age and count.
const includeRemoveJobKeys = `
local function removeDebounceKey(prefix, jobKey, jobId)
  local deid = rcall("HGET", jobKey, "deid")
  if deid then
    local deKey = prefix .. "de:" .. deid
    if rcall("GET", deKey) == jobId then
      rcall("DEL", deKey)
    end
  end
end

local function removeJobKeys(jobKey)
  rcall("DEL", jobKey, jobKey .. ":logs", jobKey .. ":dependencies",
        jobKey .. ":processed", jobKey .. ":results")
end`

const includeRemoveJobsByMaxAge = `
local function removeJobsByMaxAge(timestamp, maxAge, targetSetKey, prefix)
  local start = timestamp - maxAge * 1000
  local jobIds = rcall("ZRANGEBYSCORE", targetSetKey, "-inf", "(" .. start)
  for _, jobId in ipairs(jobIds) do
    local jobKey = prefix .. jobId
    removeDebounceKey(prefix, jobKey, jobId)
    removeJobKeys(jobKey)
  end
  rcall("ZREMRANGEBYSCORE", targetSetKey, "-inf", "(" .. start)
end`

const includeRemoveJobsByMaxCount = `
local function removeJobsByMaxCount(maxCount, targetSetKey, prefix)
  local jobIds = rcall("ZRANGE", targetSetKey, 0, -(maxCount + 1))
  for _, jobId in ipairs(jobIds) do
    local jobKey = prefix .. jobId
    removeDebounceKey(prefix, jobKey, jobId)
    removeJobKeys(jobKey)
  end
  rcall("ZREMRANGEBYRANK", targetSetKey, 0, -(maxCount + 1))
end`

// Parent/child linker. All parent-side keys derive from the parent's
// queue key, never from the current queue prefix, so the linkage is
// safe across queues.
const includeMoveParentToWaitIfNeeded = `
local function moveParentToWaitIfNeeded(parentQueueKey, parentDependenciesKey,
                                        parentKey, parentId, timestamp)
  if rcall("EXISTS", parentKey) == 1
      and rcall("SCARD", parentDependenciesKey) == 0 then
    local waitingChildrenKey = parentQueueKey .. ":waiting-children"
    if rcall("ZSCORE", waitingChildrenKey, parentId) ~= false then
      rcall("ZREM", waitingChildrenKey, parentId)
      local isParentPausedOrMaxed = isQueuePausedOrMaxed(
        parentQueueKey .. ":meta", parentQueueKey .. ":active")
      local parentMarkerKey = parentQueueKey .. ":marker"
      local priority = tonumber(rcall("HGET", parentKey, "priority")) or 0
      if priority == 0 then
        rcall("LPUSH", parentQueueKey .. ":wait", parentId)
        setMarkerIfNeeded(parentMarkerKey, isParentPausedOrMaxed)
      else
        addJobWithPriority(parentMarkerKey, parentQueueKey .. ":prioritized",
                           priority, parentId, parentQueueKey .. ":pc",
                           isParentPausedOrMaxed)
      end
      rcall("XADD", parentQueueKey .. ":events", "*", "event", "waiting",
            "jobId", parentId, "prev", "waiting-children")
    end
  end
end`

const includeUpdateParentDepsIfNeeded = `
local function updateParentDepsIfNeeded(parentKey, parentQueueKey,
                                        parentDependenciesKey, parentId,
                                        jobIdKey, returnvalue, timestamp)
  rcall("LPUSH", parentKey .. ":results", returnvalue)
  rcall("HSET", parentKey .. ":processed", jobIdKey, returnvalue)
  if rcall("SREM", parentDependenciesKey, jobIdKey) == 1 then
    moveParentToWaitIfNeeded(parentQueueKey, parentDependenciesKey, parentKey,
                             parentId, timestamp)
  end
end`

const includeMoveParentToFailedIfNeeded = `
local function moveParentToFailedIfNeeded(parentQueueKey, parentKey, parentId,
                                          jobIdKey, timestamp)
  if rcall("EXISTS", parentKey) == 1 then
    local failedReason = "child " .. jobIdKey .. " failed"
    rcall("ZREM", parentQueueKey .. ":waiting-children", parentId)
    rcall("ZADD", parentQueueKey .. ":failed", timestamp, parentId)
    rcall("HSET", parentKey, "failedReason", failedReason,
          "finishedOn", timestamp)
    rcall("XADD", parentQueueKey .. ":events", "*", "event", "failed",
          "jobId", parentId, "failedReason", failedReason,
          "prev", "waiting-children")
    local grandParentKey = rcall("HGET", parentKey, "parentKey")
    local rawGrandParentData = rcall("HGET", parentKey, "parent")
    if rawGrandParentData then
      local grandParentData = cjson.decode(rawGrandParentData)
      if grandParentData['fpof'] then
        moveParentToFailedIfNeeded(grandParentData['queueKey'], grandParentKey,
                                   grandParentData['id'], parentKey, timestamp)
      elseif grandParentData['idof'] then
        local dependenciesKey = grandParentKey .. ":dependencies"
        if rcall("SREM", dependenciesKey, parentKey) == 1 then
          moveParentToWaitIfNeeded(grandParentData['queueKey'], dependenciesKey,
                                   grandParentKey, grandParentData['id'],
                                   timestamp)
        end
      end
    end
  end
end`

const includeMoveParentIfNeeded = `
local function moveParentIfNeeded(parentData, parentKey, jobIdKey, timestamp)
  if parentData['fpof'] then
    moveParentToFailedIfNeeded(parentData['queueKey'], parentKey,
                               parentData['id'], jobIdKey, timestamp)
  elseif parentData['idof'] then
    local dependenciesKey = parentKey .. ":dependencies"
    if rcall("SREM", dependenciesKey, jobIdKey) == 1 then
      moveParentToWaitIfNeeded(parentData['queueKey'], dependenciesKey,
                               parentKey, parentData['id'], timestamp)
    end
  end
end`

// Metrics collector: fixed-width ring of per-minute counts, newest at
// the head of the data list.
const includeCollectMetrics = `
local function collectMetrics(metricsKey, dataPointsKey, maxDataPoints,
                              timestamp)
  local timestampMinute = math.floor(timestamp / 60000) * 60000
  local count = rcall("HINCRBY", metricsKey, "count", 1)
  local prevTS = rcall("HGET", metricsKey, "prevTS")
  if not prevTS then
    rcall("HSET", metricsKey, "prevTS", timestampMinute, "prevCount", 0)
    return
  end
  prevTS = tonumber(prevTS)
  if timestampMinute > prevTS then
    local prevCount = tonumber(rcall("HGET", metricsKey, "prevCount")) or 0
    rcall("HSET", metricsKey, "prevTS", timestampMinute,
          "prevCount", count - 1)
    rcall("LPUSH", dataPointsKey, count - 1 - prevCount)
    local points = (timestampMinute - prevTS) / 60000
    for _ = 1, points - 1 do
      rcall("LPUSH", dataPointsKey, 0)
    end
    rcall("LTRIM", dataPointsKey, 0, maxDataPoints - 1)
  end
end`
