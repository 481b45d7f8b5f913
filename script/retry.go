package script

// retryBody is the retry-failed-job orchestrator. Delayed promotion runs
// before the existence check: any worker entering the retry path
// opportunistically advances scheduling even when the job has since
// been removed.
const retryBody = `
local timestamp = tonumber(ARGV[2])
trimEvents(KEYS[5], KEYS[6])

local isPausedOrMaxed = isQueuePausedOrMaxed(KEYS[5], KEYS[1])
promoteDelayedJobs(KEYS[7], KEYS[10], KEYS[2], KEYS[8], KEYS[6], ARGV[1],
                   timestamp, KEYS[9], isPausedOrMaxed)

if rcall("EXISTS", KEYS[4]) == 1 then
  if ARGV[5] ~= "0" then
    local errorCode = releaseLock(KEYS[4], KEYS[11], ARGV[5], ARGV[4])
    if errorCode < 0 then
      return errorCode
    end
  end

  local numRemovedElements = rcall("LREM", KEYS[1], -1, ARGV[4])
  if numRemovedElements < 1 then
    return -3
  end

  local priority = tonumber(rcall("HGET", KEYS[4], "priority")) or 0
  if priority == 0 then
    rcall(ARGV[3], KEYS[2], ARGV[4])
    setMarkerIfNeeded(KEYS[10], isPausedOrMaxed)
  else
    addJobWithPriority(KEYS[10], KEYS[8], priority, ARGV[4], KEYS[9],
                       isPausedOrMaxed)
  end

  rcall("HINCRBY", KEYS[4], "atm", 1)
  rcall("XADD", KEYS[6], "*", "event", "waiting", "jobId", ARGV[4],
        "prev", "failed")
  return 0
else
  return -1
end`
