package metrics

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
)

// UnaryServerInterceptor returns a gRPC interceptor that records request
// counts, durations, and errors per method. Health and reflection traffic is
// not recorded; health polling would otherwise dominate the request counters.
func UnaryServerInterceptor(collector *Collector, exporter *PrometheusExporter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		method := info.FullMethod
		if isInfraMethod(method) {
			return handler(ctx, req)
		}

		start := time.Now()
		collector.RecordRequest(method)
		if exporter != nil {
			exporter.RecordRequest(method)
		}

		resp, err := handler(ctx, req)

		duration := time.Since(start).Seconds()
		collector.RecordDuration(method, duration)
		if exporter != nil {
			exporter.RecordDuration(method, duration)
		}

		if err != nil {
			collector.RecordError(method)
			if exporter != nil {
				exporter.RecordError(method)
			}
		}

		return resp, err
	}
}

// isInfraMethod reports whether the method belongs to the health or
// reflection services rather than the application surface.
func isInfraMethod(fullMethod string) bool {
	return strings.HasPrefix(fullMethod, "/grpc.health.") ||
		strings.HasPrefix(fullMethod, "/grpc.reflection.")
}
