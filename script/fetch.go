package script

// fetchBody is the standalone next-job selection: the scheduler of the
// finishing procedure without a job to finish. Workers use it to
// acquire their first job; the same 4-tuple contract applies.
const fetchBody = `
local timestamp = tonumber(ARGV[1])
local prefix = ARGV[2]
local opts = cmsgpack.unpack(ARGV[3])

trimEvents(KEYS[7], KEYS[4])

local isPausedOrMaxed = isQueuePausedOrMaxed(KEYS[7], KEYS[2])
promoteDelayedJobs(KEYS[6], KEYS[9], KEYS[1], KEYS[3], KEYS[4], prefix,
                   timestamp, KEYS[8], isPausedOrMaxed)

local maxJobs = opts['limiter'] and opts['limiter']['max']
local expireTime = getRateLimitTTL(maxJobs, KEYS[5])
if expireTime > 0 then
  return {0, 0, expireTime, 0}
end
if isPausedOrMaxed then
  return {0, 0, 0, 0}
end

local jobId = rcall("RPOPLPUSH", KEYS[1], KEYS[2])
if not jobId then
  jobId = moveJobFromPriorityToActive(KEYS[3], KEYS[2])
end
if jobId then
  return prepareJobForProcessing(prefix, KEYS[5], KEYS[4], jobId, timestamp,
                                 maxJobs, opts)
end

local nextTimestamp = getNextDelayedTimestamp(KEYS[6])
if nextTimestamp ~= nil then
  return {0, 0, 0, nextTimestamp}
end

if rcall("LLEN", KEYS[1]) == 0 and rcall("LLEN", KEYS[2]) == 0
    and rcall("ZCARD", KEYS[3]) == 0 then
  rcall("XADD", KEYS[4], "*", "event", "drained")
end
return 0`
