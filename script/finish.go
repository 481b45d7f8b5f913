package script

// finishBody is the finish-active-job orchestrator. Validation order:
// job hash exists (-1), lock ownership (-2/-6), pending dependencies
// for a completing parent (-4), presence in the active list (-3). A
// successful lock check already deletes the lock key and the stalled
// entry, so -4 and -3 are returned with the lock released. Only after
// every check passes does the rest of the procedure run: parent
// bookkeeping, finalization or deletion, terminal events, metrics, and
// optionally the next-job selection.
const finishBody = `
local jobIdKey = KEYS[12]
if rcall("EXISTS", jobIdKey) == 1 then
  local opts = cmsgpack.unpack(ARGV[8])
  local jobId = ARGV[1]
  local timestamp = tonumber(ARGV[2])
  local target = ARGV[5]
  local prefix = ARGV[7]
  local token = opts['token']

  if token ~= "0" then
    local errorCode = releaseLock(jobIdKey, KEYS[5], token, jobId)
    if errorCode < 0 then
      return errorCode
    end
  end

  if target == "completed"
      and rcall("SCARD", jobIdKey .. ":dependencies") ~= 0 then
    return -4
  end

  local numRemovedElements = rcall("LREM", KEYS[2], -1, jobId)
  if numRemovedElements < 1 then
    return -3
  end

  local metaKey = KEYS[9]
  local eventStreamKey = KEYS[4]
  trimEvents(metaKey, eventStreamKey)

  local attempts = tonumber(opts['attempts']) or 0
  local attemptsMade = (tonumber(rcall("HGET", jobIdKey, "atm")) or 0) + 1

  local parentReferences = rcall("HMGET", jobIdKey, "parentKey", "parent")
  local parentKey = parentReferences[1] or ""
  local parentId = ""
  local parentQueueKey = ""
  local parentData
  if parentReferences[2] then
    parentData = cjson.decode(parentReferences[2])
    parentId = parentData['id']
    parentQueueKey = parentData['queueKey']
  end

  if parentId ~= "" and parentKey ~= "" then
    if target == "completed" then
      updateParentDepsIfNeeded(parentKey, parentQueueKey,
                               parentKey .. ":dependencies", parentId,
                               jobIdKey, ARGV[4], timestamp)
    else
      moveParentIfNeeded(parentData, parentKey, jobIdKey, timestamp)
    end
  end

  local keepJobs = opts['keepJobs'] or {}
  local maxCount = keepJobs['count']
  local maxAge = keepJobs['age']

  if maxCount ~= 0 then
    local targetSetKey = KEYS[11]
    rcall("ZADD", targetSetKey, timestamp, jobId)
    rcall("HSET", jobIdKey, ARGV[3], ARGV[4], "finishedOn", timestamp,
          "atm", attemptsMade)
    if maxAge then
      removeJobsByMaxAge(timestamp, maxAge, targetSetKey, prefix)
    end
    if maxCount and maxCount > 0
        and rcall("ZCARD", targetSetKey) > maxCount then
      removeJobsByMaxCount(maxCount, targetSetKey, prefix)
    end
  else
    removeDebounceKey(prefix, jobIdKey, jobId)
    removeJobKeys(jobIdKey)
    if parentKey ~= "" then
      rcall("SREM", parentKey .. ":dependencies", jobIdKey)
    end
  end

  if target == "failed" then
    rcall("XADD", eventStreamKey, "*", "event", "failed", "jobId", jobId,
          "failedReason", ARGV[4], "prev", "active")
    if attemptsMade >= attempts then
      rcall("XADD", eventStreamKey, "*", "event", "retries-exhausted",
            "jobId", jobId, "attemptsMade", attemptsMade)
    end
  else
    rcall("XADD", eventStreamKey, "*", "event", "completed", "jobId", jobId,
          "returnvalue", ARGV[4])
  end

  local maxMetricsSize = opts['maxMetricsSize']
  if maxMetricsSize and maxMetricsSize ~= "" then
    collectMetrics(KEYS[13], KEYS[13] .. ":data", tonumber(maxMetricsSize),
                   timestamp)
  end

  if ARGV[6] == "1" then
    local isPausedOrMaxed = isQueuePausedOrMaxed(metaKey, KEYS[2])
    promoteDelayedJobs(KEYS[7], KEYS[14], KEYS[1], KEYS[3], eventStreamKey,
                       prefix, timestamp, KEYS[10], isPausedOrMaxed)

    local maxJobs = opts['limiter'] and opts['limiter']['max']
    local expireTime = getRateLimitTTL(maxJobs, KEYS[6])
    if expireTime > 0 then
      return {0, 0, expireTime, 0}
    end
    if isPausedOrMaxed then
      return {0, 0, 0, 0}
    end

    local nextJobId = rcall("RPOPLPUSH", KEYS[1], KEYS[2])
    if not nextJobId then
      nextJobId = moveJobFromPriorityToActive(KEYS[3], KEYS[2])
    end
    if nextJobId then
      return prepareJobForProcessing(prefix, KEYS[6], eventStreamKey,
                                     nextJobId, timestamp, maxJobs, opts)
    end

    local nextTimestamp = getNextDelayedTimestamp(KEYS[7])
    if nextTimestamp ~= nil then
      return {0, 0, 0, nextTimestamp}
    end
  end

  if rcall("LLEN", KEYS[1]) == 0 and rcall("LLEN", KEYS[2]) == 0
      and rcall("ZCARD", KEYS[3]) == 0 then
    rcall("XADD", eventStreamKey, "*", "event", "drained")
  end
  return 0
else
  return -1
end`
