package layout

// sidecarScript wraps LayoutParser's Detectron2 model as a long-lived
// process. It loads the model once, prints {"ready": true}, then answers
// each image path read from stdin with one JSON line: the raw predictions,
// or {"error": "..."} when that image fails. Class indices are left
// unmapped so the label map stays on the Go side.
const sidecarScript = `#!/usr/bin/env python3
# -*- coding: utf-8 -*-
import argparse
import json
import sys


def fail(msg, code):
    print(msg, file=sys.stderr)
    sys.exit(code)


def emit(obj):
    sys.stdout.write(json.dumps(obj) + "\n")
    sys.stdout.flush()


def class_index(label, reverse):
    if isinstance(label, int):
        return label
    try:
        return int(label)
    except (TypeError, ValueError):
        pass
    if label in reverse:
        return int(reverse[label])
    raise ValueError("unknown label %r" % (label,))


def detect(cv2, model, reverse, path):
    image = cv2.imread(path)
    if image is None:
        raise IOError("failed to read image: %s" % path)
    image = image[..., ::-1]

    out = []
    for block in model.detect(image):
        x1, y1, x2, y2 = block.coordinates
        out.append({
            "box": [float(x1), float(y1), float(x2), float(y2)],
            "score": float(block.score or 0.0),
            "class": class_index(block.type, reverse),
        })
    return out


def main():
    parser = argparse.ArgumentParser()
    parser.add_argument("--config", required=True)
    parser.add_argument("--threshold", type=float, default=0.5)
    parser.add_argument("--classes", type=int, default=5)
    args = parser.parse_args()

    try:
        import layoutparser as lp
    except ImportError as e:
        fail("layoutparser not installed: %s" % e, 2)

    if not lp.is_detectron2_available():
        fail("detectron2 not installed", 2)

    try:
        import cv2
    except ImportError as e:
        fail("opencv not installed: %s" % e, 2)

    # Identity map keeps block.type numeric instead of the catalog names.
    try:
        model = lp.Detectron2LayoutModel(
            args.config,
            label_map={i: i for i in range(args.classes)},
            extra_config=["MODEL.ROI_HEADS.SCORE_THRESH_TEST", args.threshold],
        )
    except Exception as e:
        fail("failed to load model: %s" % e, 4)

    label_map = getattr(model, "label_map", None) or {}
    reverse = dict((name, idx) for idx, name in label_map.items())

    emit({"ready": True})

    for line in sys.stdin:
        path = line.strip()
        if not path:
            continue
        try:
            emit(detect(cv2, model, reverse, path))
        except Exception as e:
            emit({"error": str(e)})


if __name__ == "__main__":
    main()
`
